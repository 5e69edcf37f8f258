package dronectl

// Version is the current version of the dronectl library
const Version = "1.0.0"
