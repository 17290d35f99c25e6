// Package main SeedAI Server API
//
//	@title			SeedAI Server API
//	@version		1.0
//	@description	Image and video generation backed by MiniMax
//
//	@host			localhost:8080
//	@BasePath		/api
//
//	@tag.name			Generation
//	@tag.description	Image and video generation requests
//
//	@tag.name			System
//	@tag.description	Health and metrics
package main
