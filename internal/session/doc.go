// Package session owns the loaded datasets. A Session holds exactly one
// immutable Dataset together with its normalization report and a lazily
// computed whole-dataset summary. Sessions are independent of each other;
// the Manager only tracks them by id and expires idle ones.
package session
