// Package overlay draws detection outlines and labels onto copies of frames.
package overlay
