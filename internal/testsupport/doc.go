// Package testsupport holds helpers shared by package tests: a temp-dir
// backed config builder, stub executables, and file fixtures.
package testsupport
