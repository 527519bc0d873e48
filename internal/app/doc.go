// Package app composes the domain services into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── user/           # Accounts: job seekers and employers
//	│   ├── job/            # Job postings
//	│   └── application/    # Applications to postings
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces (UserStore, JobStore, ...)
//	│   ├── memory/         # In-memory implementation for testing
//	│   ├── sqlite/         # Embedded single-file implementation
//	│   └── postgres/       # PostgreSQL implementation
//	├── services/           # Business rules (users, jobs, applications)
//	├── httpapi/            # HTTP handlers, routing, OpenAPI document
//	├── auth/               # Token issue/verify and password hashing
//	├── events/             # Job lifecycle broadcast hub + websocket
//	├── audit/              # Audit trail for mutating API calls
//	├── maintenance/        # Scheduled stats refresh and db housekeeping
//	├── system/             # Service lifecycle management
//	├── runtime/            # Config-driven assembly of the full server
//	└── metrics/            # Prometheus collectors
//
// # Responsibilities
//
// The app package is responsible for:
//
//   - Composing services from internal/app/services/ with their dependencies
//   - Defining storage interfaces that services depend on
//   - Providing domain models shared across services
//   - Exposing HTTP API endpoints for external access
//   - Managing application-level concerns (auth, metrics, audit)
//
// Business rules belong in the service packages, storage engines behind
// the storage interfaces, and HTTP request/response handling in httpapi.
// application.go only wires these together and runs their lifecycle.
package app
