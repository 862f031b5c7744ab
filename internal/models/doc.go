// Package models defines the core domain models for the trip budget engine.
//
// # Models
//
//   - Budget: one per trip; target amount, currency, member contribution
//     records and mutation rules
//   - BudgetMember: a member's planned contribution; flagged, never deleted,
//     once the member leaves the trip
//   - Expense: a recorded spend, split across participants
//   - Split: one participant's share of an expense
//   - BudgetSnapshot: the derived read model; recomputed on every read and
//     returned by every mutating service call
//
// # Design principles
//
//  1. Amounts are decimal.Decimal everywhere. Splits and aggregates must sum
//     exactly to the cent; floats are never used for money.
//  2. Members with financial history are retained as past members so that
//     historical expenses keep resolving.
//  3. Relationships use ID strings, not pointers, to avoid circular
//     references between budgets and expenses.
//  4. The snapshot is never persisted; it is a pure function of a budget and
//     its expenses.
package models
