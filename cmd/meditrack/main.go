// Command meditrack is a terminal client for the MediTrack API: it shows a
// month calendar and toggles days optimistically.
package main

func main() {
	Execute()
}
