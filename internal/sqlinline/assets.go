package sqlinline

const QInsertAsset = `--sql a7e31c58-4d9f-4b26-9e07-3c8b5f2a1d60
insert into assets(
  id,
  user_id,
  type,
  storage_url,
  source_job_id,
  prompt,
  model,
  metadata,
  created_at
) values (
  $1::uuid,
  $2::uuid,
  $3::text,
  $4::text,
  nullif($5::text, '')::uuid,
  $6::text,
  $7::text,
  $8::jsonb,
  now()
);
`

const QSelectAssetByID = `--sql 1d5b9f73-0e28-4a6c-b4f1-7a3c6e9d2b85
select
  id,
  user_id,
  type,
  storage_url,
  coalesce(source_job_id::text, '') as source_job_id,
  coalesce(prompt, '') as prompt,
  coalesce(model, '') as model,
  metadata,
  created_at
from assets
where id = $1::uuid
limit 1;
`

const QListAssetsByUser = `--sql c90e4a17-6b3d-4f58-a2c7-9e1f0d5b8a34
select
  id,
  user_id,
  type,
  storage_url,
  coalesce(source_job_id::text, '') as source_job_id,
  coalesce(prompt, '') as prompt,
  coalesce(model, '') as model,
  metadata,
  created_at
from assets
where user_id = $1::uuid
  and ($2::text = '' or type = $2::text)
  and ($3::text = '' or source_job_id = $3::uuid)
order by created_at desc
limit $4::int offset $5::int;
`

const QListAssetsByJob = `--sql 6f2d8b41-3a95-4c07-8d6e-b1c4f7a0e293
select
  id,
  user_id,
  type,
  storage_url,
  coalesce(source_job_id::text, '') as source_job_id,
  coalesce(prompt, '') as prompt,
  coalesce(model, '') as model,
  metadata,
  created_at
from assets
where source_job_id = $1::uuid
order by created_at asc;
`

const QDeleteAsset = `--sql 0b8c5e92-7f14-4d3a-9b60-5e2a8c1f4d76
delete from assets
where id = $1::uuid;
`
