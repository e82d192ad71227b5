/*
Command gxserial2tcp exposes serial ports as TCP servers.

Each relay listens on a TCP address and copies bytes between the first
connected client and a serial port. Relays come either from a
configuration file or from a single relay given on the command line:

	gxserial2tcp -c relays.ini
	gxserial2tcp -h 0.0.0.0:9000 -p /dev/ttyUSB0 -b 9600

Every ambient setting can also be set with a GXSERIAL2TCP_* environment
variable or in a .env file; flags win. The process runs until it
receives SIGINT or SIGTERM.
*/
package main
