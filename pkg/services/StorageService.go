package services

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/adampresley/adamgokit/s3"
	"github.com/adampresley/adamgokit/s3/createbucketoptions"
	"github.com/adampresley/adamgokit/s3/geturloptions"
	"github.com/adampresley/adamgokit/s3/listoptions"
	"github.com/adampresley/adamgokit/s3/putoptions"
	"github.com/adampresley/adamgokit/slices"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

var (
	imageExtensions = []string{".jpg", ".jpeg", ".png"}
)

/*
PhotoStorage is the object store holding album originals, thumbnails, and
zip downloads. Keys are plain slash separated paths.
*/
type PhotoStorage interface {
	Delete(keys []string) error
	EnsureBucket() error
	Exists(key string) (bool, time.Time, error)
	Get(key string) (io.ReadCloser, string, error)
	List(prefix string, imagesOnly bool) ([]StoredObject, error)
	OpenWriter(key, contentType string) (io.WriteCloser, error)
	Put(key string, r io.Reader) error
	URL(key string) (string, error)
}

type StoredObject struct {
	Key          string
	URL          string
	LastModified time.Time
}

/*
PhotoKeys builds the storage layout for an album:

	{folder}/{photographerID}/{albumID}/originals/{name}
	{folder}/{photographerID}/{albumID}/thumbnails/{name}
	{folder}/{photographerID}/{albumID}/downloads/{zip}
*/
type PhotoKeys struct {
	Folder string
}

func (k PhotoKeys) AlbumRoot(photographerID, albumID uint) string {
	return path.Join(k.Folder, fmt.Sprint(photographerID), fmt.Sprint(albumID))
}

func (k PhotoKeys) Originals(photographerID, albumID uint) string {
	return path.Join(k.AlbumRoot(photographerID, albumID), "originals")
}

func (k PhotoKeys) Thumbnails(photographerID, albumID uint) string {
	return path.Join(k.AlbumRoot(photographerID, albumID), "thumbnails")
}

func (k PhotoKeys) Downloads(photographerID, albumID uint) string {
	return path.Join(k.AlbumRoot(photographerID, albumID), "downloads")
}

// NewOriginal returns a fresh key for an uploaded file, keeping its extension.
func (k PhotoKeys) NewOriginal(photographerID, albumID uint, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return path.Join(k.Originals(photographerID, albumID), uuid.NewString()+ext)
}

// ThumbnailFor maps an original key to the key of its thumbnail.
func (k PhotoKeys) ThumbnailFor(originalKey string) string {
	dir, name := path.Split(originalKey)
	return path.Join(path.Dir(strings.TrimSuffix(dir, "/")), "thumbnails", name)
}

type S3PhotoStorageConfig struct {
	Bucket    string
	Region    string
	S3Client  s3.S3Client
	URLExpiry time.Duration
}

type S3PhotoStorage struct {
	bucket    string
	region    string
	s3Client  s3.S3Client
	urlExpiry time.Duration
}

func NewS3PhotoStorage(config S3PhotoStorageConfig) S3PhotoStorage {
	if config.URLExpiry <= 0 {
		config.URLExpiry = time.Minute * 30
	}

	return S3PhotoStorage{
		bucket:    config.Bucket,
		region:    config.Region,
		s3Client:  config.S3Client,
		urlExpiry: config.URLExpiry,
	}
}

func (s S3PhotoStorage) EnsureBucket() error {
	exists, err := s.s3Client.BucketExists(s.bucket)
	if err != nil {
		return fmt.Errorf("error ensuring bucket '%s' exists: %w", s.bucket, err)
	}

	if exists {
		return nil
	}

	if err = s.s3Client.CreateBucket(s.bucket, createbucketoptions.WithRegion(s.region)); err != nil {
		return fmt.Errorf("error creating bucket '%s': %w", s.bucket, err)
	}

	return nil
}

func (s S3PhotoStorage) Put(key string, r io.Reader) error {
	if _, err := s.s3Client.Put(s.bucket, key, r); err != nil {
		return fmt.Errorf("error uploading '%s': %w", key, err)
	}

	return nil
}

func (s S3PhotoStorage) Get(key string) (io.ReadCloser, string, error) {
	response, err := s.s3Client.Get(s.bucket, key)
	if err != nil {
		return nil, "", fmt.Errorf("error retrieving '%s': %w", key, err)
	}

	return response.Body, response.ContentType, nil
}

func (s S3PhotoStorage) URL(key string) (string, error) {
	return s.s3Client.GetUrl(s.bucket, key)
}

// Exists reports whether key is stored and when it was last written.
func (s S3PhotoStorage) Exists(key string) (bool, time.Time, error) {
	stat, err := s.s3Client.StatObject(s.bucket, key)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("error retrieving metadata for '%s': %w", key, err)
	}

	if stat == nil {
		return false, time.Time{}, nil
	}

	return true, stat.LastModified, nil
}

func (s S3PhotoStorage) List(prefix string, imagesOnly bool) ([]StoredObject, error) {
	var (
		err      error
		response s3.ListResponse
	)

	urlOptions := listoptions.WithGetUrlOptions(
		geturloptions.WithExpiration(s.urlExpiry),
	)

	if imagesOnly {
		response, err = s.s3Client.List(
			s.bucket,
			prefix,
			listoptions.WithGetUrls(),
			listoptions.WithGetAll(),
			listoptions.WithFilter(func(obj types.Object) bool {
				ext := strings.ToLower(filepath.Ext(aws.ToString(obj.Key)))
				return slices.IsInSlice(ext, imageExtensions)
			}),
			urlOptions,
		)
	} else {
		response, err = s.s3Client.List(
			s.bucket,
			prefix,
			listoptions.WithGetUrls(),
			listoptions.WithGetAll(),
			urlOptions,
		)
	}

	if err != nil {
		return nil, fmt.Errorf("error listing '%s': %w", prefix, err)
	}

	return slices.Map(response.Objects, func(obj s3.Object, index int) StoredObject {
		return StoredObject{
			Key:          obj.Key,
			URL:          obj.Url,
			LastModified: obj.LastModified,
		}
	}), nil
}

func (s S3PhotoStorage) Delete(keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	if _, err := s.s3Client.Delete(s.bucket, keys); err != nil {
		return fmt.Errorf("error deleting %d objects: %w", len(keys), err)
	}

	return nil
}

/*
OpenWriter streams an upload to key. The object is complete once Close
returns without error.
*/
func (s S3PhotoStorage) OpenWriter(key, contentType string) (io.WriteCloser, error) {
	stream, err := s.s3Client.PutStream(s.bucket, key, putoptions.WithContentType(contentType))
	if err != nil {
		return nil, fmt.Errorf("error opening upload stream for '%s': %w", key, err)
	}

	return &s3StreamWriter{
		Writer: stream.Writer,
		closer: stream.Writer.Close,
		wait: func() error {
			_, err := stream.Wait()
			return err
		},
	}, nil
}

type s3StreamWriter struct {
	io.Writer
	closer func() error
	wait   func() error
}

func (w *s3StreamWriter) Close() error {
	if err := w.closer(); err != nil {
		return err
	}

	return w.wait()
}
