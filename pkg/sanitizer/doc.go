// Package sanitizer provides input normalization functions for customer data.
//
// All normalization functions are idempotent - applying them multiple times
// produces the same result. Functions handle invalid input gracefully,
// typically by returning empty strings rather than errors.
//
// Normalization includes:
//   - Phone numbers: Convert to E.164 format (+[country][number])
//   - Strings: Collapse whitespace, trim leading/trailing spaces
//   - Plot numbers: Uppercase, strip surrounding whitespace - "p101" becomes "P101"
package sanitizer
