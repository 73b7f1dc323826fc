package db

import "samplr/pkg/consts"

var dbTableSchemas = map[string]string{
	consts.UserAccountTable:   userAccountSchema,
	consts.UserAuthIndexTable: userAccountByAuthSchema,
	consts.CheckInTable:       checkInRecordSchema,
	consts.ReviewTable:        reviewRecordSchema,
	consts.TierTable:          tierSchema,
	consts.FcmTable:           fcmSchema,
}

// notifications holds independently serialised entries, newest first.
// notifications_version is the compare-and-set token for that list and the
// total_* columns are only ever written through IF conditions.
var userAccountSchema = `
CREATE TABLE IF NOT EXISTS  %s.user_account (
profile_id varchar,
auth_id varchar,
total_points bigint,
total_events int,
total_reviews int,
notifications list<text>,
notifications_version bigint,
notification_preferences map<text, boolean>,
PRIMARY KEY (profile_id)
)
`

var userAccountByAuthSchema = `
CREATE TABLE IF NOT EXISTS  %s.user_account_by_auth (
auth_id varchar,
profile_id varchar,
PRIMARY KEY (auth_id)
)
`

var checkInRecordSchema = `
CREATE TABLE IF NOT EXISTS  %s.check_in_record (
user_id varchar,
event_id varchar,
check_in_code varchar,
points_earned bigint,
created_time timestamp,
PRIMARY KEY (user_id, event_id)
)
`

var reviewRecordSchema = `
CREATE TABLE IF NOT EXISTS  %s.review_record (
user_id varchar,
event_id varchar,
rating int,
review_text text,
purchased boolean,
points_earned bigint,
created_time timestamp,
PRIMARY KEY (user_id, event_id)
)
`

var tierSchema = `
CREATE TABLE IF NOT EXISTS  %s.tier (
catalog varchar,
tier_order int,
name varchar,
required_points bigint,
PRIMARY KEY (catalog, tier_order)
) WITH CLUSTERING ORDER BY (tier_order asc)
`

var fcmSchema = `
CREATE TABLE IF NOT EXISTS  %s.fcm (
profile_id varchar,
device_id varchar,
updated timestamp,
PRIMARY KEY (profile_id, device_id)
)
`
