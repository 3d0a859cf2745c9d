package storage

import (
	"bytes"
	"fmt"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"kindernest_go/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// Folder names used as S3 key prefixes.
const (
	FolderAvatars  = "avatars"
	FolderChildren = "children"
	FolderAlbums   = "albums"
	FolderMedical  = "medical"
	FolderLeaves   = "leaves"
)

// MaxUploadSize caps single uploads at 20 MB.
const MaxUploadSize = 20 << 20

type StorageService struct {
	s3Client *s3.S3
	bucket   string
}

func NewStorageService() (*StorageService, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AppConfig.AWSRegion),
		Credentials: credentials.NewStaticCredentials(
			config.AppConfig.AWSAccessKeyID,
			config.AppConfig.AWSSecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %v", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		bucket:   config.AppConfig.S3BucketName,
	}, nil
}

// UploadImage uploads a photo, converting it to WebP when a converter is
// available. Non-image files are rejected.
func (s *StorageService) UploadImage(file *multipart.FileHeader, folder string, ownerID uint) (string, error) {
	if !s.isImageFile(file.Filename) {
		return "", fmt.Errorf("file %s is not a supported image", file.Filename)
	}
	return s.upload(file, folder, ownerID, true)
}

// UploadDocument uploads a medical or leave attachment. Images and PDFs are
// accepted as-is.
func (s *StorageService) UploadDocument(file *multipart.FileHeader, folder string, ownerID uint) (string, error) {
	ext := s.getFileExtension(file.Filename)
	if !s.isImageFile(file.Filename) && ext != "pdf" {
		return "", fmt.Errorf("file %s is not a supported document type", file.Filename)
	}
	return s.upload(file, folder, ownerID, false)
}

func (s *StorageService) upload(file *multipart.FileHeader, folder string, ownerID uint, convert bool) (string, error) {
	if file.Size > MaxUploadSize {
		return "", fmt.Errorf("file exceeds the %d MB upload limit", MaxUploadSize>>20)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %v", err)
	}
	defer src.Close()

	fileBytes, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %v", err)
	}

	finalBytes := fileBytes
	finalExtension := s.getFileExtension(file.Filename)

	if convert {
		webpBytes, converted := s.convertToWebP(fileBytes)
		if converted {
			finalBytes = webpBytes
			finalExtension = "webp"
		}
	}

	now := time.Now()
	randomID := uuid.New().String()[:16]
	key := fmt.Sprintf("%s/%d/%d/%02d/%02d/%s.%s",
		folder,
		ownerID,
		now.Year(),
		now.Month(),
		now.Day(),
		randomID,
		finalExtension,
	)

	_, err = s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(finalBytes),
		ContentType: aws.String(s.getContentType(finalExtension)),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %v", err)
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s",
		s.bucket,
		config.AppConfig.AWSRegion,
		key,
	)
	return url, nil
}

// DeleteFile deletes a previously uploaded object by its public URL.
func (s *StorageService) DeleteFile(fileURL string) error {
	key := s.extractKeyFromURL(fileURL)
	if key == "" {
		return fmt.Errorf("invalid file URL")
	}

	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *StorageService) isImageFile(filename string) bool {
	ext := s.getFileExtension(filename)
	switch ext {
	case "jpg", "jpeg", "png", "gif", "webp", "heic":
		return true
	}
	return false
}

func (s *StorageService) getFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 1 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// convertToWebP shells out to cwebp when present. The second return value
// reports whether conversion actually happened.
func (s *StorageService) convertToWebP(imageBytes []byte) ([]byte, bool) {
	cwebpPath, err := exec.LookPath("cwebp")
	if err != nil {
		return imageBytes, false
	}

	inFile, err := os.CreateTemp("", "img-input-*")
	if err != nil {
		return imageBytes, false
	}
	defer func() {
		inFile.Close()
		os.Remove(inFile.Name())
	}()

	if _, err := inFile.Write(imageBytes); err != nil {
		return imageBytes, false
	}

	outFile, err := os.CreateTemp("", "img-out-*.webp")
	if err != nil {
		return imageBytes, false
	}
	outFile.Close()
	defer os.Remove(outFile.Name())

	cmd := exec.Command(cwebpPath, "-q", "80", inFile.Name(), "-o", outFile.Name())
	if err := cmd.Run(); err != nil {
		return imageBytes, false
	}

	outBytes, err := os.ReadFile(outFile.Name())
	if err != nil {
		return imageBytes, false
	}
	return outBytes, true
}

func (s *StorageService) getContentType(extension string) string {
	switch strings.ToLower(extension) {
	case "webp":
		return "image/webp"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "heic":
		return "image/heic"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func (s *StorageService) extractKeyFromURL(url string) string {
	parts := strings.SplitN(url, ".amazonaws.com/", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
