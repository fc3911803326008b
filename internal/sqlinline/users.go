package sqlinline

const QSelectUserCredits = `--sql 4a6e1d83-9c05-4b72-8f3a-d217e5b0c948
select role, credits
from users
where id = $1::uuid
limit 1;
`

const QDebitCredits = `--sql f13b7a26-5d48-4e90-b2c1-8a6f3d0e5c72
update users
set credits = credits - $2::int,
    updated_at = now()
where id = $1::uuid
  and credits >= $2::int
returning credits;
`

const QGrantCredits = `--sql 82d4f0b5-1e67-4a39-9c28-6b0d4e7a1f53
update users
set credits = credits + $2::int,
    updated_at = now()
where id = $1::uuid
returning id, email, credits;
`

const QSelectUserByEmail = `--sql 29c8e6f4-0a31-4d57-b8e2-7f5a1c3d9b06
select id, email, role, credits
from users
where email = $1::text
limit 1;
`

const QSelectUserByID = `--sql d60a3b97-4f82-4c15-a7d3-0e9b6f2c8a41
select id, email, role, credits
from users
where id = $1::uuid
limit 1;
`
