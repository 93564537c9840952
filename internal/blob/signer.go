package blob

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Signer mints and verifies time-limited download URLs. The token is an
// HS256 JWT binding the asset, its blob path, and the response content
// type, so the download endpoint needs no further authorization.
type Signer struct {
	Secret   []byte
	BaseURL  string // e.g. https://api.example.com
	Validity time.Duration
	Now      func() time.Time
}

// DownloadClaims is what a verified download token authorizes.
type DownloadClaims struct {
	AssetID     uuid.UUID
	BlobPath    string
	ContentType string
	FileName    string
}

func (s *Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SignDownload returns a full download URL for the asset, valid for the
// configured window.
func (s *Signer) SignDownload(assetID uuid.UUID, blobPath, contentType, fileName string) (string, error) {
	now := s.now().UTC()
	claims := jwt.MapClaims{
		"sub": assetID.String(),
		"pth": blobPath,
		"ct":  contentType,
		"fn":  fileName,
		"iat": now.Unix(),
		"exp": now.Add(s.Validity).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("blob: signing download token: %w", err)
	}
	return fmt.Sprintf("%s/v1/assets/%s/download?token=%s", s.BaseURL, assetID, tok), nil
}

// VerifyDownload validates a download token and returns its claims.
func (s *Signer) VerifyDownload(token string) (*DownloadClaims, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.Secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("blob: invalid download token")
	}

	sub, _ := claims["sub"].(string)
	assetID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("blob: invalid download token subject")
	}
	path, _ := claims["pth"].(string)
	if path == "" {
		return nil, fmt.Errorf("blob: download token missing path")
	}
	ct, _ := claims["ct"].(string)
	fn, _ := claims["fn"].(string)
	return &DownloadClaims{AssetID: assetID, BlobPath: path, ContentType: ct, FileName: fn}, nil
}
