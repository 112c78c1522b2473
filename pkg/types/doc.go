// Package types defines the Store and Cursor interfaces, schema descriptor
// types (Field, ForeignKey, ManyToManyField, DisplayField), and standard
// error values for the reshape storage system.
package types
