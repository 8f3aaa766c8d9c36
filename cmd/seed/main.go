package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/d60-Lab/void-feed/config"
	"github.com/d60-Lab/void-feed/internal/api/middleware"
	"github.com/d60-Lab/void-feed/internal/model"
	"github.com/d60-Lab/void-feed/internal/repository"
	"github.com/d60-Lab/void-feed/pkg/database"
)

var quotes = []string{
	"Nothing here will last.",
	"Delete me if you dare.",
	"Every post is a countdown.",
	"The void is patient.",
	"Seen by many, kept by none.",
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func main() {
	n := flag.Int("n", 30, "posts to create")
	token := flag.String("token", "", "also print a bearer token for this user id")
	flag.Parse()

	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	defer database.Close(db)

	changes := repository.NewChangeRepository(db)
	posts := repository.NewPostRepository(db, changes)

	kinds := []model.PostKind{model.PostKindQuote, model.PostKindMeme, model.PostKindImage}
	now := time.Now().UTC()
	for i := 0; i < *n; i++ {
		author := fmt.Sprintf("user%d", rand.Intn(10))
		p := &model.Post{
			Kind:      kinds[i%len(kinds)],
			Content:   quotes[rand.Intn(len(quotes))],
			Author:    &author,
			CreatedAt: now.Add(-time.Duration(*n-i) * time.Minute),
		}
		if p.Kind == model.PostKindImage {
			url := fmt.Sprintf("https://picsum.photos/seed/%d/600/400", i)
			p.ImageURL = &url
		}
		if err := posts.Create(context.Background(), p); err != nil {
			panic(err)
		}
	}
	fmt.Printf("seeded %d posts\n", *n)

	if *token != "" {
		if cfg.Auth.JWTSecret == "" {
			panic("auth.jwt_secret is required to issue tokens")
		}
		tok := must(middleware.IssueToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, *token, jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		}))
		fmt.Printf("Authorization: Bearer %s\n", tok)
	}
}
