package models

import "time"

// OracleConfig holds the connection parameters for the monitored database.
type OracleConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	ServiceName string
	Timeout     time.Duration // bounds connect + query
}
