// Package repository define el contrato de persistencia que consume el core.
//
// El core (linking, roles, account) solo ve estas interfaces; las
// implementaciones viven en internal/store/memory e internal/store/pg.
//
//	┌─────────────────────────────────────────────┐
//	│   linking / roles / account / session       │
//	└─────────────────────────────────────────────┘
//	                     │
//	                     ▼
//	┌─────────────────────────────────────────────┐
//	│        domain/repository (Store)            │
//	└─────────────────────────────────────────────┘
//	           │                      │
//	           ▼                      ▼
//	┌─────────────────┐      ┌─────────────────┐
//	│  store/memory   │      │    store/pg     │
//	└─────────────────┘      └─────────────────┘
//
// Convenciones:
//   - Context siempre es el primer parámetro.
//   - Errores de dominio están en errors.go.
//   - Transacciones y locking quedan del lado del adapter.
package repository
