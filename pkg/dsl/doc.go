/*
Package dsl provides a fluent Go builder for workflow definitions.

It is the programmatic counterpart of the YAML loader: definitions are checked
by the compiler instead of at load time, and guards and hooks are plain Go
functions instead of registry names.

Example usage:

	def, err := dsl.New("order-processing", "order").
		Initial("PENDING").
		States("PENDING", "PROCESSING", "SHIPPED", "CANCELLED").
		On("process").From("PENDING").To("PROCESSING").
		Guard("in_stock", inStock).
		On("ship").From("PROCESSING").To("SHIPPED").
		After("notify", notifyCustomer).
		On("cancel").From("PENDING", "PROCESSING").To("CANCELLED").
		Build()
*/
package dsl
