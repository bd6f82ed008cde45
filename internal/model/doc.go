// Package model defines the shared data types of the live quote client.
//
// Conventions:
//   - Prices, changes and percentages: decimal.Decimal (exact comparison)
//   - Symbols: upper-case strings as published by the live channel
//   - Generations: uint64, one per underlying connection
package model
