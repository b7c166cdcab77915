package mmserver

var Version = "devel"
