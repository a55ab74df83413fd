package tests

import (
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/user"
	logsvc "github.com/trezcool/darasa/services/logger"
)

var (
	validate   *validator.Validate
	translator ut.Translator
	logger     core.Logger
)

func TestMain(m *testing.M) {
	core.Conf = &core.Config{
		Env:                  "TEST",
		TestMode:             true,
		AppName:              "Darasa",
		SecretKey:            []byte("+T35t-s3cr3t-k3y+"),
		DefaultFromName:      "Darasa",
		DefaultFromAddress:   "noreply@localhost",
		PasswordResetTimeout: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        7 * 24 * time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}

	stdl := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), core.Conf)
	stdl.Enable(false)
	logger = stdl

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")

	validate = validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	os.Exit(m.Run())
}
