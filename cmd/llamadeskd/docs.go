package main

// General API documentation for swaggo. Run `swag init` to generate docs.
//
// @title           llamadesk API
// @version         1.0
// @description     HTTP backend for the llamadesk desktop UI: GGUF model discovery, llama-server process management, launch settings, and chat sessions.
//
// @BasePath  /
//
// @schemes http
