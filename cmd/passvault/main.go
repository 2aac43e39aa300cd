package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/dmitrijs2005/passvault/internal/app"
	"github.com/dmitrijs2005/passvault/internal/config"
	"github.com/dmitrijs2005/passvault/internal/flagx"
	"github.com/dmitrijs2005/passvault/internal/session"
)

func sessionPath() string {
	path := "session.json"
	if env := os.Getenv("PASSVAULT_SESSION"); env != "" {
		path = env
	}

	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-session"})
	fs := flag.NewFlagSet("session", flag.ContinueOnError)
	fs.StringVar(&path, "session", path, "Path to session file")
	fs.StringVar(&path, "s", path, "Path to session file (short)")
	_ = fs.Parse(args)

	return path
}

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	sess, err := session.Load(sessionPath())
	if err != nil {
		log.Printf("%v", err)
		return
	}

	creds := app.Credentials{AccessToken: sess.AccessToken, RefreshToken: sess.RefreshToken}
	a, err := app.NewApp(cfg, sess, sess, sess.Vaults(), creds)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	a.Run(ctx)

}
