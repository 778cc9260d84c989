//go:build !slsdebug

package sls

const debugBuild = false
