// ABOUTME: Package chatapi is the REST client for the chat platform
// ABOUTME: Used for gateway discovery and for sending replies

// Package chatapi wraps the platform's HTTP API. The gateway websocket URL
// and shard count come from GetGatewayBot at startup; everything else is
// the reply surface plugins reach through the bot facade.
package chatapi
