package database

import (
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

func TestDatabase(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Database Configuration Suite")
}

var _ = Describe("Database Configuration", func() {
	Describe("DefaultConfig", func() {
		It("returns the curator's standard defaults", func() {
			cfg := DefaultConfig()

			Expect(cfg.Host).To(Equal("localhost"))
			Expect(cfg.Port).To(Equal(5432))
			Expect(cfg.Database).To(Equal("curator"))
			Expect(cfg.SSLMode).To(Equal("disable"))
			Expect(cfg.MaxOpenConns).To(Equal(25))
			Expect(cfg.MaxIdleConns).To(Equal(5))
		})
	})

	Describe("LoadFromEnv", func() {
		var (
			cfg      *Config
			original map[string]string
		)

		BeforeEach(func() {
			cfg = DefaultConfig()
			original = map[string]string{
				"DB_HOST": os.Getenv("DB_HOST"), "DB_PORT": os.Getenv("DB_PORT"),
				"DB_USER": os.Getenv("DB_USER"), "DB_PASSWORD": os.Getenv("DB_PASSWORD"),
				"DB_NAME": os.Getenv("DB_NAME"), "DB_SSL_MODE": os.Getenv("DB_SSL_MODE"),
			}
		})

		AfterEach(func() {
			for k, v := range original {
				if v == "" {
					os.Unsetenv(k)
				} else {
					os.Setenv(k, v)
				}
			}
		})

		It("loads every variable when all are set", func() {
			os.Setenv("DB_HOST", "testhost")
			os.Setenv("DB_PORT", "3306")
			os.Setenv("DB_USER", "testuser")
			os.Setenv("DB_PASSWORD", "testpass")
			os.Setenv("DB_NAME", "testdb")
			os.Setenv("DB_SSL_MODE", "require")

			cfg.LoadFromEnv()

			Expect(cfg.Host).To(Equal("testhost"))
			Expect(cfg.Port).To(Equal(3306))
			Expect(cfg.User).To(Equal("testuser"))
			Expect(cfg.Password).To(Equal("testpass"))
			Expect(cfg.Database).To(Equal("testdb"))
			Expect(cfg.SSLMode).To(Equal("require"))
		})

		It("keeps the default port on an invalid value", func() {
			os.Setenv("DB_PORT", "not-a-port")
			originalPort := cfg.Port
			cfg.LoadFromEnv()
			Expect(cfg.Port).To(Equal(originalPort))
		})
	})

	Describe("Validate", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = DefaultConfig()
		})

		It("passes for defaults", func() {
			Expect(cfg.Validate()).To(Succeed())
		})

		It("rejects an empty host", func() {
			cfg.Host = ""
			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database host is required"))
		})

		It("rejects an out-of-range port", func() {
			cfg.Port = 70000
			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database port must be between"))
		})

		It("rejects zero max open connections", func() {
			cfg.MaxOpenConns = 0
			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("max open connections"))
		})
	})

	Describe("ConnectionString", func() {
		It("includes the password when set", func() {
			cfg := &Config{Host: "localhost", Port: 5432, User: "u", Database: "d", SSLMode: "disable", Password: "secret"}
			Expect(cfg.ConnectionString()).To(Equal("host=localhost port=5432 user=u dbname=d sslmode=disable password=secret"))
		})

		It("excludes the password when empty", func() {
			cfg := &Config{Host: "localhost", Port: 5432, User: "u", Database: "d", SSLMode: "disable"}
			result := cfg.ConnectionString()
			Expect(result).NotTo(ContainSubstring("password="))
		})
	})

	Describe("Connect", func() {
		It("rejects an invalid configuration before dialing", func() {
			logger := logrus.New()
			logger.SetLevel(logrus.FatalLevel)

			_, err := Connect(&Config{Port: 5432, User: "u"}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("invalid database configuration"))
		})
	})
})
