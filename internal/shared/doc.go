// Package shared holds code used across packages that belongs to no single
// layer. Its testutil subpackage provides the slog capture handler and the
// sample dataset fixtures used by the package tests.
//
// testutil must only be imported from _test.go files.
package shared
