// Package client provides a client library for uploading to and downloading
// from stashbox servers.
//
// Uploads are sent as multipart forms authorized by an access token; every
// stored file gets a public link. Downloads need no token and accept either
// the link or the bare object name.
//
// # Basic Usage
//
// Create a client and upload a file:
//
//	cfg := &client.Config{
//		Endpoint: "https://files.example.com",
//		Token:    "0b6f8a52-3c1e-4a0d-9f77-2d5e8c1a9b34",
//	}
//
//	c, err := client.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := c.Upload(ctx, client.UploadOptions{
//		Paths: []string{"./photo.png"},
//	})
//
// # Profile Configuration
//
// Use profiles to manage multiple server configurations:
//
//	configFile, err := client.LoadConfigFile(client.DefaultConfigPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	profile, err := configFile.GetProfile("production")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	c, err := client.New(client.ConfigFromProfile(profile))
//
// # Output Formatting
//
// Use formatters for human-readable or JSON output:
//
//	formatter := client.NewFormatter(jsonOutput, quiet)
//	formatter.FormatUpload(os.Stdout, results)
package client
