// Package internaldefs holds the shared metric definitions consumed by the
// exporter bindings. It exists so every exporter publishes the same names
// and help strings for the same counters.
package internaldefs
