package domain

import (
	"time"

	"github.com/google/uuid"
)

// BlockParentType identifies the kind of entity a block belongs to. Only
// notes can carry blocks today; other values are rejected at validation.
type BlockParentType string

const (
	ParentNote BlockParentType = "Note"
)

// BlockType is the content kind of a block. Text types carry TextContent;
// asset types carry asset metadata and go through the upload workflow.
type BlockType string

const (
	BlockParagraph  BlockType = "Paragraph"
	BlockHeading    BlockType = "Heading"
	BlockBulletList BlockType = "BulletList"
	BlockNumberList BlockType = "NumberList"
	BlockQuote      BlockType = "Quote"
	BlockCode       BlockType = "Code"
	BlockImage      BlockType = "Image"
	BlockFile       BlockType = "File"
)

// IsAsset reports whether the block type carries a binary asset.
func (t BlockType) IsAsset() bool {
	return t == BlockImage || t == BlockFile
}

func (t BlockType) valid() bool {
	switch t {
	case BlockParagraph, BlockHeading, BlockBulletList, BlockNumberList,
		BlockQuote, BlockCode, BlockImage, BlockFile:
		return true
	}
	return false
}

// UploadStatus is the asset-block upload state machine:
// Pending -> Uploaded on a committed upload, Pending -> Failed on a blob
// failure. Failed is terminal; the client creates a new block to retry.
type UploadStatus string

const (
	UploadPending  UploadStatus = "Pending"
	UploadUploaded UploadStatus = "Uploaded"
	UploadFailed   UploadStatus = "Failed"
)

// Block is an ordered content element of a note. Position is an opaque
// fractional-index string; the server stores and echoes it, byte-order
// comparable, never reinterpreted.
type Block struct {
	Meta
	ParentID   uuid.UUID
	ParentType BlockParentType
	Type       BlockType
	Position   string

	// Text payload, text block types only.
	TextContent string

	// Asset metadata, asset block types only.
	AssetClientID    uuid.UUID
	AssetFileName    string
	AssetContentType *string
	AssetSizeBytes   int64
	AssetID          *uuid.UUID
	UploadStatus     UploadStatus
}

func validateBlockCommon(parentType BlockParentType, blockType BlockType, position string) []string {
	var violations []string
	if parentType != ParentNote {
		violations = append(violations, "unsupported parent type")
	}
	if !blockType.valid() {
		violations = append(violations, "unknown block type")
	}
	if position == "" {
		violations = append(violations, "position must not be empty")
	}
	return violations
}

// NewTextBlock creates a text-typed block under an already-validated
// parent. TextContent may be empty.
func NewTextBlock(userID, parentID uuid.UUID, parentType BlockParentType, blockType BlockType, position, textContent string, now time.Time) (*Block, error) {
	violations := validateBlockCommon(parentType, blockType, position)
	if blockType.valid() && blockType.IsAsset() {
		violations = append(violations, "block type requires asset metadata")
	}
	if len(violations) > 0 {
		return nil, validationErr(violations...)
	}
	return &Block{
		Meta:        newMeta(userID, now),
		ParentID:    parentID,
		ParentType:  parentType,
		Type:        blockType,
		Position:    position,
		TextContent: textContent,
	}, nil
}

// NewAssetBlock creates an asset-typed block in the Pending upload state.
func NewAssetBlock(userID, parentID uuid.UUID, parentType BlockParentType, blockType BlockType, position string, assetClientID uuid.UUID, fileName string, contentType *string, sizeBytes int64, now time.Time) (*Block, error) {
	violations := validateBlockCommon(parentType, blockType, position)
	if blockType.valid() && !blockType.IsAsset() {
		violations = append(violations, "block type does not carry an asset")
	}
	if assetClientID == uuid.Nil {
		violations = append(violations, "asset client id must not be empty")
	}
	if fileName == "" {
		violations = append(violations, "asset file name must not be empty")
	}
	if sizeBytes <= 0 {
		violations = append(violations, "asset size must be positive")
	}
	if len(violations) > 0 {
		return nil, validationErr(violations...)
	}
	return &Block{
		Meta:             newMeta(userID, now),
		ParentID:         parentID,
		ParentType:       parentType,
		Type:             blockType,
		Position:         position,
		AssetClientID:    assetClientID,
		AssetFileName:    fileName,
		AssetContentType: contentType,
		AssetSizeBytes:   sizeBytes,
		UploadStatus:     UploadPending,
	}, nil
}

// Update applies a sync update in a single mutation: a new position, new
// text content, or both. Nil means leave the field as is.
func (b *Block) Update(position *string, textContent *string, now time.Time) error {
	if b.IsDeleted {
		return ErrDeleted
	}
	var violations []string
	if position != nil && *position == "" {
		violations = append(violations, "position must not be empty")
	}
	if textContent != nil && b.Type.IsAsset() {
		violations = append(violations, "asset blocks have no text content")
	}
	if len(violations) > 0 {
		return validationErr(violations...)
	}
	if position != nil {
		b.Position = *position
	}
	if textContent != nil {
		b.TextContent = *textContent
	}
	b.touch(now)
	return nil
}

// UpdatePosition moves the block within its parent.
func (b *Block) UpdatePosition(position string, now time.Time) error {
	pos := position
	return b.Update(&pos, nil, now)
}

// UpdateTextContent replaces the text payload.
func (b *Block) UpdateTextContent(text string, now time.Time) error {
	return b.Update(nil, &text, now)
}

// SetUploadFailed marks the blob upload as failed. Terminal for this block.
func (b *Block) SetUploadFailed(now time.Time) error {
	if b.IsDeleted {
		return ErrDeleted
	}
	if b.UploadStatus != UploadPending {
		return validationErr("upload status is not pending")
	}
	b.UploadStatus = UploadFailed
	b.touch(now)
	return nil
}

// SetAssetUploaded links the committed asset and transitions the upload
// state machine Pending -> Uploaded atomically.
func (b *Block) SetAssetUploaded(assetID uuid.UUID, now time.Time) error {
	if b.IsDeleted {
		return ErrDeleted
	}
	if !b.Type.IsAsset() {
		return validationErr("block does not carry an asset")
	}
	if b.UploadStatus != UploadPending {
		return validationErr("upload status is not pending")
	}
	if assetID == uuid.Nil {
		return validationErr("asset id must not be empty")
	}
	b.AssetID = &assetID
	b.UploadStatus = UploadUploaded
	b.touch(now)
	return nil
}

// SoftDelete tombstones the block.
func (b *Block) SoftDelete(now time.Time) error {
	if b.IsDeleted {
		return ErrDeleted
	}
	b.Meta.softDelete(now)
	return nil
}

// RehydrateBlock rebuilds a block from persisted state.
func RehydrateBlock(meta Meta, parentID uuid.UUID, parentType BlockParentType, blockType BlockType, position, textContent string, assetClientID uuid.UUID, assetFileName string, assetContentType *string, assetSizeBytes int64, assetID *uuid.UUID, uploadStatus UploadStatus) *Block {
	return &Block{
		Meta:             meta,
		ParentID:         parentID,
		ParentType:       parentType,
		Type:             blockType,
		Position:         position,
		TextContent:      textContent,
		AssetClientID:    assetClientID,
		AssetFileName:    assetFileName,
		AssetContentType: assetContentType,
		AssetSizeBytes:   assetSizeBytes,
		AssetID:          assetID,
		UploadStatus:     uploadStatus,
	}
}
