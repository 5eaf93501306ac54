package domain

import "context"

// StoreTx is a view of the Policy Store inside one indivisible update.
// Getters return the entry default when the key is absent.
type StoreTx interface {
	// Bool reads a bool entry.
	Bool(key Key, def bool) (bool, error)

	// String reads a string entry; ok is false when absent.
	String(key Key) (value string, ok bool, err error)

	// Int64 reads an integer entry.
	Int64(key Key, def int64) (int64, error)

	// Set writes a bool, string, int/int64 or time.Time entry.
	Set(key Key, value any) error

	// Delete removes an entry. Deleting an absent entry is not an error.
	Delete(key Key) error

	// Meta reads a bookkeeping value; ok is false when absent.
	Meta(key string) (value string, ok bool, err error)

	// SetMeta writes a bookkeeping value.
	SetMeta(key, value string) error

	// DeleteMeta removes a bookkeeping value.
	DeleteMeta(key string) error
}

// PolicyStore is the durable key-value namespace shared by every component.
// Implementation: SQLCipher database, one row per entry.
type PolicyStore interface {
	// Snapshot returns every entry with defaults applied.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Update runs fn inside a single transaction. No observer sees a partial update.
	Update(ctx context.Context, fn func(tx StoreTx) error) error

	// Apply writes a delta atomically.
	Apply(ctx context.Context, d Delta) error

	// Meta reads bookkeeping that is not part of the policy namespace.
	Meta(ctx context.Context, key string) (string, error)

	// SetMeta writes bookkeeping.
	SetMeta(ctx context.Context, key, value string) error

	// DeleteMeta removes bookkeeping.
	DeleteMeta(ctx context.Context, key string) error

	// Close releases the database connection.
	Close() error
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// Terminate asks a process to exit (SIGTERM).
	Terminate(pid int) error

	// NameOf returns the executable name of a PID.
	NameOf(pid int) (string, error)

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// InterceptionSurface is the blocking screen.
type InterceptionSurface interface {
	// Present shows appID and blocks until the surface is dismissed.
	// Any error means the surface went away without a user choice.
	Present(ctx context.Context, appID string) (Outcome, error)
}

// Launcher brings the main application's entry point to the foreground.
type Launcher interface {
	BringToFront(ctx context.Context) error
}

// Notifier is the opaque "persistent notification with N actions" capability.
type Notifier interface {
	// EnsureChannel creates the channel unless it exists. created reports which.
	EnsureChannel(ctx context.Context, ch Channel) (created bool, err error)

	// Show presents n and blocks until the user picks an action.
	// An empty action with nil error means the notification was dismissed.
	Show(ctx context.Context, n Notification) (PresenceAction, error)

	// Withdraw removes notification id. Withdrawing nothing is a no-op.
	Withdraw(ctx context.Context, n Notification) error
}

// ForegroundSource delivers foreground-application changes.
type ForegroundSource interface {
	// Run blocks until ctx is done, calling emit once per change.
	Run(ctx context.Context, emit func(appID string)) error
}

// DaemonSpawner starts a detached daemon process for a role.
type DaemonSpawner interface {
	Spawn(role DaemonRole) error
}

// LaunchAgentManager handles the login/boot agent that fires boot_completed.
type LaunchAgentManager interface {
	// Install creates and loads the agent.
	Install(execPath string) error

	// Uninstall unloads and removes the agent.
	Uninstall() error

	// IsInstalled checks if the agent is installed.
	IsInstalled() bool

	// GetPlistPath returns the agent file path.
	GetPlistPath() string

	// NeedsUpdate checks if the agent exists but has different content than expected.
	NeedsUpdate(execPath string) bool

	// Update rewrites and reloads the agent.
	Update(execPath string) error
}

// KeyProvider abstracts the source of the store encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
