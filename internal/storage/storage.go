package storage

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
)

// Client — обёртка над Supabase Storage для одного bucket.
// Ключи объектов структурированы как:
//
//	tenants/{tenant}/products/{product}/...   — изображения товаров
//	tenants/{tenant}/rooms/{session}/...      — фотографии комнат
//	tenants/{tenant}/renders/{run}/{variant}  — результаты рендера
type Client struct {
	api    *storage_go.Client
	bucket string
}

// Config — настройки подключения к storage.
type Config struct {
	// URL — базовый URL Supabase проекта.
	URL string

	// ServiceKey — сервисный ключ с правом записи.
	ServiceKey string

	// Bucket — имя bucket для всех объектов системы.
	Bucket string
}

// ConfigFromEnv читает настройки из окружения.
func ConfigFromEnv() Config {
	bucket := os.Getenv("STORAGE_BUCKET")
	if bucket == "" {
		bucket = "showroom"
	}
	return Config{
		URL:        os.Getenv("SUPABASE_URL"),
		ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		Bucket:     bucket,
	}
}

// New создаёт новый storage client.
func New(cfg Config) *Client {
	api := storage_go.NewClient(cfg.URL+"/storage/v1", cfg.ServiceKey, nil)
	return &Client{api: api, bucket: cfg.Bucket}
}

// Put загружает объект, перезаписывая существующий.
func (c *Client) Put(key string, data []byte, contentType string) error {
	upsert := true
	_, err := c.api.UploadFile(c.bucket, key, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("storage put %s: %w", key, err)
	}
	return nil
}

// Get скачивает объект.
func (c *Client) Get(key string) ([]byte, error) {
	data, err := c.api.DownloadFile(c.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("storage get %s: %w", key, err)
	}
	return data, nil
}

// Copy копирует объект на новый ключ.
func (c *Client) Copy(srcKey, dstKey string) error {
	data, err := c.Get(srcKey)
	if err != nil {
		return err
	}
	contentType := "application/octet-stream"
	upsert := true
	_, err = c.api.UploadFile(c.bucket, dstKey, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("storage copy %s -> %s: %w", srcKey, dstKey, err)
	}
	return nil
}

// Delete удаляет объекты по ключам. Отсутствующие ключи не ошибка.
func (c *Client) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.api.RemoveFile(c.bucket, keys)
	if err != nil {
		return fmt.Errorf("storage delete: %w", err)
	}
	return nil
}

// SignedURL возвращает подписанный URL чтения на expiresIn секунд.
func (c *Client) SignedURL(key string, expiresIn int) (string, error) {
	resp, err := c.api.CreateSignedUrl(c.bucket, key, expiresIn)
	if err != nil {
		return "", fmt.Errorf("storage sign %s: %w", key, err)
	}
	return resp.SignedURL, nil
}

// Exists проверяет наличие объекта. Storage API не отдаёт типизированную
// ошибку not-found, поэтому различаем по тексту.
func (c *Client) Exists(key string) (bool, error) {
	_, err := c.api.DownloadFile(c.bucket, key)
	if err == nil {
		return true, nil
	}
	if strings.Contains(err.Error(), "not_found") || strings.Contains(err.Error(), "404") {
		return false, nil
	}
	return false, fmt.Errorf("storage exists %s: %w", key, err)
}
