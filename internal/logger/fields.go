package logger

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so logs stay
// greppable and aggregatable.
const (
	// Connection
	KeyBroker = "broker"  // Broker address (host:port)
	KeyConnID = "conn_id" // Connection attempt identifier
	KeyURL    = "url"     // Broker URL as configured
	KeyUser   = "user"    // Login user name

	// RPC
	KeyPath           = "path"            // SHV path of a message
	KeyMethod         = "method"          // RPC method name
	KeySignal         = "signal"          // Signal name of a subscription
	KeyRequestID      = "request_id"      // Request id of a call
	KeySubscriptionID = "subscription_id" // Subscription id of a notification sink
	KeyMount          = "mount"           // Mount path of a local node
	KeyAccessLevel    = "access_level"    // Access level carried by a request

	// Generic
	KeyError    = "error"       // Error value
	KeyEvent    = "event"       // Client or connection event name
	KeyCount    = "count"       // Generic counter (missed events, fragments, ...)
	KeyDuration = "duration_ms" // Elapsed time in milliseconds
)
