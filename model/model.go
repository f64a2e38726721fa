// Package model contains the domain models of the subscription manager.
package model

const tablePrefix = "submgr_"
