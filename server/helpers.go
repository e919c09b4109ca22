package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/echocheck/echocheck/server/auth"
	"github.com/echocheck/echocheck/server/gstorage"
	"github.com/echocheck/echocheck/server/models"
	"github.com/echocheck/echocheck/server/work"
	"github.com/echocheck/echocheck/shared"
	"github.com/echocheck/echocheck/utils"
	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	personNamePattern  = regexp.MustCompile(`^[A-Za-z ]+$`)
	phoneDigitsPattern = regexp.MustCompile(`^\d{10}$`)
	emailShapePattern  = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w{2,}$`)
)

// ---------------------------------------------------------------------------------//
// Handler helper functions
// --------------------------------------------------------------------------------//

func writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		logg.Error(payLoad.Errors)
	} else if statusCode >= http.StatusBadRequest {
		logg.Info(payLoad.Errors)
	}

	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

// RegisterValidators adds this service's field rules:
// 'person_name' (letters & spaces only), 'phone_digits' (exactly 10 digits)
// & 'email_shape' (basic local@domain.tld shape).
func RegisterValidators(validate *validator.Validate) error {
	err := validate.RegisterValidation("person_name", func(fl validator.FieldLevel) bool {
		return personNamePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("phone_digits", func(fl validator.FieldLevel) bool {
		return phoneDigitsPattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	if err != nil {
		return err
	}

	return validate.RegisterValidation("email_shape", func(fl validator.FieldLevel) bool {
		return emailShapePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func requestVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// currentUserID returns the id the verified token was bound to. Protected
// routes only; the protected middleware guarantees the claims are present.
func currentUserID(r *http.Request) uint {
	decodedJWT := r.Context().Value(RequestContextKey("decodedJWT")).(DecodedJWT)

	id, err := strconv.ParseUint(decodedJWT.Claims.Subject, 10, 64)
	if err != nil {
		logg.Panicf("malformed subject in verified token: %v", err)
	}

	return uint(id)
}

// ---------------------------------------------------------------------------------//
// Middleware helper functions
// --------------------------------------------------------------------------------//

func (h *requestHandler) decodeAndVerifyAuthHeader(authHeaderValue string) DecodedJWT {
	authHeaderList := strings.Split(authHeaderValue, "Bearer ")
	if len(authHeaderList) < 2 {
		return DecodedJWT{ErrorMsg: "no token provided"}
	}

	tokenClaims, err := auth.DecodeJWT(authHeaderList[1], h.jwtSecret)
	if errors.Is(err, auth.ErrTokenExpired) {
		return DecodedJWT{ErrorMsg: "token has expired"}
	}
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	// validate that the user account still exists
	_, err = models.FindUserBy("id", tokenClaims.Subject)
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	return DecodedJWT{Claims: tokenClaims}
}

// ---------------------------------------------------------------------------------//
// Server helper functions
// --------------------------------------------------------------------------------//

func serve(server *http.Server) {
	logg.Infof("Echocheck server is listening on port%v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func cleanup(
	workerPool *work.WorkerPoolAdapter,
	server *http.Server,
	backupDb bool,
	gStorageClient *gstorage.GStorage,
	config *shared.ServerConfig,
	configDir string,
) {
	// Stop the watchdog scan & regular server jobs
	workerPool.Stop()

	if backupDb {
		if err := backupDatabase(gStorageClient, config, configDir); err != nil {
			logg.Errorf("final db backup failed: %v", err)
		}
	}

	// Shutdown server gracefully
	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("Echocheck server shutdown failed: %+s", err)
	}

	logg.Infof("Echocheck server stopped properly")
}

// configDirectory retrieves the directory holding echocheck's config & db,
// or logs an error message and then calls os.Exit if it's unable to.
func configDirectory(devMode bool) string {
	// Use 'echocheck' folder in home directory for prod
	configFolderName := "echocheck"
	rootDir, err := os.UserHomeDir()
	fatalOnError(err)

	// Use 'dev' folder in current directory for dev mode
	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		fatalOnError(err)
	}

	configDir := filepath.Join(rootDir, configFolderName)

	err = utils.CreateDirIfNotExist(configDir)
	fatalOnError(err)

	return configDir
}

func fatalOnError(err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
