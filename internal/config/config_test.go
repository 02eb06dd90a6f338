package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "curator-config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when the config file exists with full content", func() {
			BeforeEach(func() {
				valid := `
server:
  port: "8081"
  metrics_port: "9091"

brief:
  concurrency: 8
  max_content_bytes: 40000
  min_content_bytes: 150
  cache_ttl: "168h"
  model: "claude-haiku-4-5"

document:
  budget_chars: 150000

reasoner:
  model: "claude-sonnet-4-5"

writer:
  primary_model: "claude-opus-4-1"
  fallback_model: "claude-haiku-4-5"
  concurrency: 6

safety:
  max_iterations: 2
  model: "claude-sonnet-4-5"

refinement:
  max_revisions: 2

scheduler:
  interval: "10m"
  staleness_threshold: "12h"

logging:
  level: "debug"
  format: "console"
`
				Expect(os.WriteFile(configFile, []byte(valid), 0644)).To(Succeed())
			})

			It("loads every section", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Server.Port).To(Equal("8081"))
				Expect(cfg.Brief.Concurrency).To(Equal(8))
				Expect(cfg.Brief.CacheTTL).To(Equal(168 * time.Hour))
				Expect(cfg.Document.BudgetChars).To(Equal(150000))
				Expect(cfg.Writer.Concurrency).To(Equal(6))
				Expect(cfg.Safety.MaxIterations).To(Equal(2))
				Expect(cfg.Refinement.MaxRevisions).To(Equal(2))
				Expect(cfg.Scheduler.Interval).To(Equal(10 * time.Minute))
				Expect(cfg.Logging.Level).To(Equal("debug"))
			})
		})

		Context("when the config file has minimal content", func() {
			BeforeEach(func() {
				minimal := `
server:
  port: "3000"
`
				Expect(os.WriteFile(configFile, []byte(minimal), 0644)).To(Succeed())
			})

			It("fills in defaults for everything else", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Server.Port).To(Equal("3000"))
				Expect(cfg.Brief.Concurrency).To(Equal(10))
				Expect(cfg.Safety.MaxIterations).To(Equal(3))
				Expect(cfg.Scheduler.Interval).To(Equal(15 * time.Minute))
			})
		})

		Context("when the config file does not exist", func() {
			It("returns an error", func() {
				_, err := Load(filepath.Join(tempDir, "missing.yaml"))
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to read config file"))
			})
		})

		Context("when the config file has invalid YAML", func() {
			BeforeEach(func() {
				Expect(os.WriteFile(configFile, []byte("server:\n  port: [\n"), 0644)).To(Succeed())
			})

			It("returns an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})
	})

	Describe("validate", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = defaults()
		})

		It("passes for the defaults", func() {
			Expect(validate(cfg)).To(Succeed())
		})

		It("rejects zero brief concurrency", func() {
			cfg.Brief.Concurrency = 0
			err := validate(cfg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("brief concurrency"))
		})

		It("rejects zero safety max_iterations", func() {
			cfg.Safety.MaxIterations = 0
			err := validate(cfg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("safety max_iterations"))
		})

		It("rejects a non-positive scheduler interval", func() {
			cfg.Scheduler.Interval = 0
			err := validate(cfg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("scheduler interval"))
		})
	})

	Describe("loadFromEnv", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = &Config{}
			os.Clearenv()
		})

		AfterEach(func() {
			os.Clearenv()
		})

		It("applies environment overrides", func() {
			os.Setenv("CURATOR_SERVER_PORT", "4000")
			os.Setenv("CURATOR_BRIEF_CONCURRENCY", "4")
			os.Setenv("CURATOR_LOG_LEVEL", "warn")

			Expect(loadFromEnv(cfg)).To(Succeed())
			Expect(cfg.Server.Port).To(Equal("4000"))
			Expect(cfg.Brief.Concurrency).To(Equal(4))
			Expect(cfg.Logging.Level).To(Equal("warn"))
		})

		It("returns an error for a non-numeric concurrency override", func() {
			os.Setenv("CURATOR_BRIEF_CONCURRENCY", "not-a-number")
			Expect(loadFromEnv(cfg)).NotTo(Succeed())
		})

		It("leaves the config untouched when nothing is set", func() {
			before := *cfg
			Expect(loadFromEnv(cfg)).To(Succeed())
			Expect(*cfg).To(Equal(before))
		})
	})
})
