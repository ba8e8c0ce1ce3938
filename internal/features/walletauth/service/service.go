package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"pocketlegal-backend/internal/features/user/service"
	"pocketlegal-backend/internal/features/walletauth/models"
	"pocketlegal-backend/internal/features/walletauth/repository"
)

var (
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrInvalidSignature = errors.New("signature verification failed")
	ErrNonceExpired     = errors.New("nonce not found or expired")
)

type Service struct {
	repo       repository.Repository
	users      service.UserService
	nonceTTL   time.Duration
	sessionTTL time.Duration
}

func NewService(repo repository.Repository, users service.UserService, nonceTTL, sessionTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		users:      users,
		nonceTTL:   nonceTTL,
		sessionTTL: sessionTTL,
	}
}

// IssueNonce creates a one-time challenge for the wallet to sign.
func (s *Service) IssueNonce(ctx context.Context, walletAddress string) (*models.NonceResponse, error) {
	if !common.IsHexAddress(walletAddress) {
		return nil, ErrInvalidAddress
	}
	addr := common.HexToAddress(walletAddress).Hex()

	nonce := uuid.New().String()
	if err := s.repo.SaveNonce(ctx, addr, nonce, s.nonceTTL); err != nil {
		return nil, err
	}

	return &models.NonceResponse{
		Nonce:   nonce,
		Message: signMessage(addr, nonce),
	}, nil
}

// Verify checks an EIP-191 personal_sign of the issued challenge, creates
// the user on first connection, and opens a session.
func (s *Service) Verify(ctx context.Context, req *models.VerifyRequest) (*models.VerifyResponse, error) {
	if !common.IsHexAddress(req.WalletAddress) {
		return nil, ErrInvalidAddress
	}
	addr := common.HexToAddress(req.WalletAddress).Hex()

	nonce, err := s.repo.ConsumeNonce(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrNonceNotFound) {
			return nil, ErrNonceExpired
		}
		return nil, err
	}

	if err := verifySignature(addr, signMessage(addr, nonce), req.Signature); err != nil {
		return nil, err
	}

	user, err := s.users.GetOrCreateByWallet(ctx, addr)
	if err != nil {
		return nil, err
	}

	token := uuid.New().String()
	session := &models.Session{
		UserID:        user.ID,
		WalletAddress: addr,
		CreatedAt:     time.Now(),
	}
	if err := s.repo.SaveSession(ctx, token, session, s.sessionTTL); err != nil {
		return nil, err
	}

	return &models.VerifyResponse{
		Token:         token,
		UserID:        user.ID,
		WalletAddress: addr,
	}, nil
}

// Session resolves a bearer token.
func (s *Service) Session(ctx context.Context, token string) (*models.Session, error) {
	return s.repo.GetSession(ctx, token)
}

// Logout revokes a bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.repo.DeleteSession(ctx, token)
}

func signMessage(address, nonce string) string {
	return fmt.Sprintf("PocketLegal wants you to sign in\nWallet: %s\nNonce: %s", address, nonce)
}

func verifySignature(address, message, signature string) error {
	sig := common.FromHex(signature)
	if len(sig) != 65 {
		return ErrInvalidSignature
	}

	// Wallets return V as 27/28; go-ethereum expects 0/1.
	if sig[64] >= 27 {
		sig = append([]byte{}, sig...)
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return ErrInvalidSignature
	}

	if crypto.PubkeyToAddress(*pubKey) != common.HexToAddress(address) {
		return ErrInvalidSignature
	}

	return nil
}
