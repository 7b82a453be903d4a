// Command flowstate serves, validates and inspects workflow definitions.
package main

func main() {
	Execute()
}
