package utils

import (
	"context"
	"log"
	"runtime/debug"
	"strings"
	"unicode/utf8"
)

// GoSafe runs fn in a goroutine and recovers from panics so one failing
// worker cannot bring down the process.
func GoSafe(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recovered from panic: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// ShouldContinue reports whether the context is still live.
func ShouldContinue(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	default:
		return true
	}
}

// ContainsString reports whether s is present in list.
func ContainsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// CleanToValidUTF8 drops invalid UTF-8 sequences from s.
func CleanToValidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}

// Chunk splits items into slices of at most size elements. A non-positive
// size yields a single chunk with all items.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		return [][]T{items}
	}
	var chunks [][]T
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[:size])
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}
