package version

// Version is the current release of the echocheck binary.
const Version = "0.1.0"
