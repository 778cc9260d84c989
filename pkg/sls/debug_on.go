//go:build slsdebug

package sls

const debugBuild = true
