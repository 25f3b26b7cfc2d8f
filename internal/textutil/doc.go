// Package textutil turns track and playlist metadata into filesystem-safe
// names.
//
// Recording names follow the "Artists - Title.ext" convention. Derivation is
// pure and total: every input, including empty fields and path separators,
// maps to a valid single path segment of bounded length.
package textutil
