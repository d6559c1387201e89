// Package models defines the core domain models for Canteen.
//
// # Models
//
//   - Instrument: a stored payment method (FPX bank link, e-wallet or card)
//   - Order: a paid pre-order at one cafeteria, advanced by staff until completed
//   - SplitSession / Participant: a group request to divide one order's total
//   - User / Preferences: registered accounts and their per-user settings
//
// # Design Principles
//
// 1. **Integer money**: every amount is Cents (minor currency units), never float64
// 2. **Typed enums**: statuses and instrument types are string-backed types with
//    explicit transition helpers, so business logic never handles raw strings
// 3. **Avoid circular references**: relationships are ID strings, not pointers
// 4. **Unix timestamps**: CreatedAt and friends are Unix seconds, as stored
package models
