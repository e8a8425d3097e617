// Package retention prunes stored results by age and by count, either on
// demand ("drivelogic results prune") or on a cron schedule while serving.
package retention
