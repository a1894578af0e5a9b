package api

import (
	"context"
	"net/http"

	"github.com/pavelanni/cotgame/internal/model"
)

// API paths.
const (
	PathQuestions = "/api/v1/questions"
	PathSolve     = "/api/v1/solve"
	PathSignup    = "/api/signup"
	PathLogin     = "/api/login"
)

// ListQuestions fetches the full catalog in server order.
func (c *Client) ListQuestions(ctx context.Context) ([]model.Question, error) {
	var questions []model.Question
	if err := c.Do(ctx, http.MethodGet, PathQuestions, nil, &questions); err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// Solve submits one prompt for evaluation. Exactly one HTTP call is made.
func (c *Client) Solve(ctx context.Context, req model.SolveRequest) (*model.SolveResponse, error) {
	var resp model.SolveResponse
	if err := c.Do(ctx, http.MethodPost, PathSolve, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signup registers a new user.
func (c *Client) Signup(ctx context.Context, req model.SignupRequest) (*model.LoginResponse, error) {
	var resp model.LoginResponse
	if err := c.Do(ctx, http.MethodPost, PathSignup, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	var resp model.LoginResponse
	if err := c.Do(ctx, http.MethodPost, PathLogin, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
