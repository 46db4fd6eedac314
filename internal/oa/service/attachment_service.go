package service

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"time"

	"github.com/bitfantasy/nimo-oa/internal/oa/entity"
	"github.com/bitfantasy/nimo-oa/internal/oa/repository"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// AttachmentService 附件服务。文件内容放 MinIO，元数据落数据库，
// 上传先行：先上传拿到附件ID，创建审批单时再挂接。
type AttachmentService struct {
	repo   *repository.AttachmentRepository
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewAttachmentService 创建附件服务。client 为 nil 时上传接口不可用。
func NewAttachmentService(repo *repository.AttachmentRepository, client *minio.Client, bucket string, logger *zap.Logger) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentService{repo: repo, client: client, bucket: bucket, logger: logger}
}

// ErrStorageUnavailable 未配置对象存储
var ErrStorageUnavailable = fmt.Errorf("对象存储未配置")

// Upload 上传单个文件并创建附件记录
func (s *AttachmentService) Upload(ctx context.Context, uploaderID string, fh *multipart.FileHeader) (*entity.ApprovalAttachment, error) {
	if s.client == nil {
		return nil, ErrStorageUnavailable
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	defer src.Close()

	id := uuid.New().String()
	now := time.Now()
	// 对象键按 年/月 分目录，带附件ID防止重名
	objectKey := fmt.Sprintf("approvals/%d/%02d/%s%s", now.Year(), now.Month(), id, filepath.Ext(fh.Filename))

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := s.client.PutObject(ctx, s.bucket, objectKey, src, fh.Size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return nil, fmt.Errorf("上传对象存储失败: %w", err)
	}

	att := &entity.ApprovalAttachment{
		ID:         id,
		FileName:   fh.Filename,
		ObjectKey:  objectKey,
		Size:       fh.Size,
		MimeType:   contentType,
		UploadedBy: uploaderID,
		CreatedAt:  now,
	}
	if err := s.repo.Create(ctx, att); err != nil {
		// 元数据落库失败时尽量清理已上传的对象
		if rerr := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); rerr != nil {
			s.logger.Warn("failed to remove orphan object", zap.String("object_key", objectKey), zap.Error(rerr))
		}
		return nil, fmt.Errorf("保存附件记录失败: %w", err)
	}

	s.logger.Info("attachment uploaded",
		zap.String("attachment_id", att.ID),
		zap.String("file_name", att.FileName),
		zap.Int64("size", att.Size),
	)
	return att, nil
}

// DownloadURL 生成附件的临时下载链接
func (s *AttachmentService) DownloadURL(ctx context.Context, attachmentID string) (string, error) {
	if s.client == nil {
		return "", ErrStorageUnavailable
	}

	atts, err := s.repo.FindByIDs(ctx, []string{attachmentID})
	if err != nil {
		return "", err
	}
	att, ok := atts[attachmentID]
	if !ok {
		return "", ErrAttachmentNotFound
	}

	// 响应头带原始文件名
	params := make(url.Values)
	params.Set("response-content-disposition", fmt.Sprintf(`attachment; filename="%s"`, att.FileName))

	u, err := s.client.PresignedGetObject(ctx, s.bucket, att.ObjectKey, 15*time.Minute, params)
	if err != nil {
		return "", fmt.Errorf("生成下载链接失败: %w", err)
	}
	return u.String(), nil
}
