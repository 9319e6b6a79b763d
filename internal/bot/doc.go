// Package bot routes chat messages to the capture machine and the report
// service and answers through a Channel.
//
// # Commands
//
//	/newmeasurement (/new)        start recording a measurement
//	/cancel                       abandon the measurement in progress
//	/showmeasurements (/history)  show the latest readings
//	/export                       send all readings as a CSV file
//	/help, /start                 usage
//
// Commands are also accepted with a "!" prefix. A recognized command always
// wins over field parsing, so "/cancel" is never read as a value. Plain text
// is fed to the capture machine when the sender has a measurement in
// progress and answered with a hint otherwise.
//
// # Channel
//
// Channel is the outbound port. The Matrix bridge in cmd/pulselog
// implements it; tests use a recording fake.
package bot
