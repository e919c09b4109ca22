package shared

type ServerConfig struct {
	Sqlite    SqliteConfig    `mapstructure:"sqlite" validate:"required"`
	Echocheck EchocheckConfig `mapstructure:"echocheck" validate:"required"`
	Twilio    TwilioConfig    `mapstructure:"twilio"`
	Google    GoogleConfig    `mapstructure:"google"`
}

type SqliteConfig struct {
	PassPhrase string `mapstructure:"passPhrase" validate:"required"`
}

type EchocheckConfig struct {
	JwtSecret string         `mapstructure:"jwtSecret" validate:"required"`
	Cron      CronConfig     `mapstructure:"cron" validate:"required"`
	Listener  ListenerConfig `mapstructure:"listener" validate:"required"`
	Watchdog  WatchdogConfig `mapstructure:"watchdog"`
}

type CronConfig struct {
	TimeZone string `mapstructure:"timeZone" validate:"required"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port" validate:"required"`
}

// WatchdogConfig controls the optional background scanner that alerts
// a trip owner's contacts when a check-in deadline lapses. Disabled unless
// explicitly enabled; the scan endpoint itself never pushes notifications.
type WatchdogConfig struct {
	Enabled      interface{} `mapstructure:"enabled" validate:"omitempty,bool"`
	CronSchedule string      `mapstructure:"cronSchedule" validate:"required_with=Enabled"`
}

type TwilioConfig struct {
	AccountSid     string `mapstructure:"accountSid"`
	AuthToken      string `mapstructure:"authToken"`
	PhoneNumber    string `mapstructure:"phoneNumber"`
	WhatsappNumber string `mapstructure:"whatsappNumber"`
}

type GoogleConfig struct {
	ApplicationCredentials string        `mapstructure:"applicationCredentials"`
	Storage                StorageConfig `mapstructure:"storage"`
}

type StorageConfig struct {
	Bucket                    string      `mapstructure:"bucket" validate:"required_with=EnableSqliteBackupAndSync"`
	Prefix                    string      `mapstructure:"prefix" validate:"required_with=EnableSqliteBackupAndSync"`
	SqliteBackupSchedule      string      `mapstructure:"sqliteBackupSchedule" validate:"required_with=EnableSqliteBackupAndSync"`
	EnableSqliteBackupAndSync interface{} `mapstructure:"enableSqliteBackupAndSync" validate:"omitempty,bool"`
}
