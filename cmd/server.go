package cmd

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"

	devConfig "github.com/echocheck/echocheck/dev/config"
	"github.com/echocheck/echocheck/server"
	"github.com/echocheck/echocheck/shared"
	"github.com/echocheck/echocheck/utils"
	"github.com/go-playground/validator"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serverConfigFile string

func createServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start an echocheck server",
		Long:  `The echocheck server houses the trip check-in tracking & SOS broadcast functionality`,
		Run: func(cmd *cobra.Command, args []string) {
			server.Start(serverConfig(), isDevEnv)
		},
	}

	cmd.Flags().StringVar(&serverConfigFile, "sconfig", "", "config file for the server")

	return cmd
}

func serverConfig() *shared.ServerConfig {
	config := viper.New()

	if isDevEnv {
		serverConfigFile = devConfigFilePath()
	}

	config.SetConfigFile(serverConfigFile)

	// ENV vars override whatever is in the config file
	config.BindEnv("echocheck.jwtSecret", "ECHOCHECK_JWT_SECRET")
	config.BindEnv("sqlite.passPhrase", "ECHOCHECK_SQLITE_PASSPHRASE")
	config.BindEnv("twilio.accountSid", "TWILIO_ACCOUNT_SID")
	config.BindEnv("twilio.authToken", "TWILIO_AUTH_TOKEN")
	config.BindEnv("twilio.phoneNumber", "TWILIO_PHONE_NUMBER")
	config.BindEnv("twilio.whatsappNumber", "TWILIO_WHATSAPP_NUMBER")
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		cobra.CheckErr(fmt.Errorf("error reading server config file: %v", err))
	}

	serverConfig := &shared.ServerConfig{}
	cobra.CheckErr(config.Unmarshal(serverConfig))
	cobra.CheckErr(configValidator().Struct(serverConfig))

	return serverConfig
}

// configValidator knows the 'bool' rule used on the flag-style config fields,
// which viper hands over as interface{} values.
func configValidator() *validator.Validate {
	validate := validator.New()

	cobra.CheckErr(validate.RegisterValidation("bool", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.Bool
	}))

	return validate
}

// devConfigFilePath materializes the canned dev config under ./dev/config
// (when missing) & returns its path.
func devConfigFilePath() string {
	workingDir, err := os.Getwd()
	cobra.CheckErr(err)

	configDir := filepath.Join(workingDir, "dev", "config")
	cobra.CheckErr(utils.CreateDirIfNotExist(configDir))

	configFilePath := filepath.Join(configDir, "server.yml")
	if !utils.FileExist(configFilePath) {
		cobra.CheckErr(ioutil.WriteFile(configFilePath, []byte(devConfig.SERVER_YML), 0600))
	}

	return configFilePath
}
