// Command face runs and inspects the robot face expression engine.
package main

func main() {
	Execute()
}
