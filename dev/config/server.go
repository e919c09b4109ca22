package config

const SERVER_YML = `
echocheck:
  jwtSecret: "dev-only-secret-do-not-use-in-prod"
  cron:
    timeZone: "America/Toronto"
  listener:
    port: 3000
  watchdog:
    enabled: false
    cronSchedule: "*/5 * * * *"

sqlite:
  passPhrase: passphrase

google:
  storage:
    bucket: "echocheck"
    prefix: "echocheck-dev"
    sqliteBackupSchedule: "*/30 * * * *"
    enableSqliteBackupAndSync: false
  applicationCredentials:

twilio:
  accountSid:
  authToken:
  phoneNumber:
  whatsappNumber:
`
