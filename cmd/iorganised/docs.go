package main

// General API documentation for swaggo. Regenerate with
// `swag init -g cmd/iorganised/docs.go -o api/docs`.
//
// @title           iorganise API
// @version         1.0
// @description     Upload study material; transcribe, OCR, classify and summarize it.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
//
// @schemes http
