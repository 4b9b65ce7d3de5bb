package ejreconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/sa6mwa/ejreconcile/internal/pathutil"
)

// Environment selects the runtime posture; outside prod, newly-registered
// users get the fixed DefaultTestPassword instead of a random one.
type Environment string

const (
	EnvDev  Environment = "dev"
	EnvTest Environment = "test"
	EnvProd Environment = "prod"
)

// DefaultSyncTimeoutSeconds bounds how long the mutator holds the lock
// while a sync runs, per spec.md §4.7.
const DefaultSyncTimeoutSeconds = 60

// MUCOption is one ejabberd room-configuration option, serialized to the
// admin API as {"name":..., "value":...} per spec.md §4.3.
type MUCOption struct {
	Name  string
	Value string
}

// Config captures the inputs to the core reconciliation engine, supplied
// by the lifecycle layer per spec.md §6.
type Config struct {
	// DBFolder is the directory holding userdb.edn, its lock file, and the
	// backup/ and omemo/ subtrees.
	DBFolder string
	// AdminAPIURL is the base URL of ejabberd's HTTP admin API.
	AdminAPIURL string
	// XMPPDomain is the virtual host managed by this engine.
	XMPPDomain string
	// MUCService is the MUC component's JID host (e.g. conference.example.org).
	MUCService string
	// Env selects dev/test/prod posture.
	Env Environment
	// DefaultTestPassword is used for newly-registered users only in
	// dev/test; ignored in prod, where a random password is generated.
	DefaultTestPassword string
	// ManagedMUCOptions are merged into every room created by the sync
	// engine, before moderation-derived overrides are applied.
	ManagedMUCOptions []MUCOption
	// SyncTimeoutS bounds the lock hold duration for one swapState call.
	SyncTimeoutS int
}

// Validate applies defaults and sanity-checks the configuration, in the
// style of the corpus's own Config.Validate: fill in defaults first, then
// reject anything left inconsistent.
func (c *Config) Validate() error {
	folder, err := pathutil.ExpandUserAndEnv(c.DBFolder)
	if err != nil {
		return fmt.Errorf("config: expand db folder: %w", err)
	}
	if strings.TrimSpace(folder) == "" {
		return fmt.Errorf("config: db folder is required")
	}
	c.DBFolder = folder

	if strings.TrimSpace(c.AdminAPIURL) == "" {
		return fmt.Errorf("config: admin api url is required")
	}
	if strings.TrimSpace(c.XMPPDomain) == "" {
		return fmt.Errorf("config: xmpp domain is required")
	}
	if strings.TrimSpace(c.MUCService) == "" {
		c.MUCService = "conference." + c.XMPPDomain
	}

	switch c.Env {
	case "":
		c.Env = EnvProd
	case EnvDev, EnvTest, EnvProd:
	default:
		return fmt.Errorf("config: env must be one of %q, %q, %q", EnvDev, EnvTest, EnvProd)
	}
	if c.Env != EnvProd && strings.TrimSpace(c.DefaultTestPassword) == "" {
		return fmt.Errorf("config: default test password is required in %q", c.Env)
	}

	if c.SyncTimeoutS <= 0 {
		c.SyncTimeoutS = DefaultSyncTimeoutSeconds
	}
	return nil
}

// LockTimeout returns the configured sync timeout as a duration.
func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.SyncTimeoutS) * time.Second
}
