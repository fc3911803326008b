package sqlinline

const QInsertJob = `--sql 7c1f2e4a-9b3d-4c8e-a1f5-2d6b8e0a4c17
insert into generation_jobs(
  id,
  user_id,
  kind,
  model,
  status,
  progress,
  credits_reserved,
  external_id,
  input_json,
  created_at,
  updated_at
) values (
  $1::uuid,
  $2::uuid,
  $3::text,
  $4::text,
  $5::text,
  $6::int,
  $7::int,
  $8::text,
  $9::jsonb,
  now(),
  now()
);
`

const QSelectJobByID = `--sql 3e9a7d21-5f48-4b0c-9a2e-8c1d4f6b7a30
select
  id,
  user_id,
  kind,
  model,
  status,
  progress,
  credits_reserved,
  coalesce(external_id, '') as external_id,
  input_json,
  output_json,
  coalesce(error_message, '') as error_message,
  created_at,
  updated_at
from generation_jobs
where id = $1::uuid
limit 1;
`

const QListJobsByUser = `--sql b4d80c6e-2a17-4f9b-8e53-6c0a1d2f9e48
select
  id,
  user_id,
  kind,
  model,
  status,
  progress,
  credits_reserved,
  coalesce(external_id, '') as external_id,
  input_json,
  output_json,
  coalesce(error_message, '') as error_message,
  created_at,
  updated_at
from generation_jobs
where user_id = $1::uuid
order by created_at desc
limit $2::int offset $3::int;
`

const QUpdateJobProgress = `--sql 91c3f5a7-6e2b-4d18-b0c9-4a7e3f1d8b26
update generation_jobs
set progress = $2::int,
    updated_at = now()
where id = $1::uuid
  and status = 'processing'
  and progress <= $2::int;
`

const QCompleteJob = `--sql e2a64b19-8d0f-4c37-a5b8-1f9c6d3e7a02
update generation_jobs
set status = 'completed',
    progress = 100,
    output_json = $2::jsonb,
    updated_at = now()
where id = $1::uuid
  and status = 'processing';
`

const QFailJob = `--sql 58f0d3c2-7b4a-4e96-8c1d-0a5e2f7b9d64
update generation_jobs
set status = 'failed',
    error_message = $2::text,
    updated_at = now()
where id = $1::uuid
  and status = 'processing';
`
