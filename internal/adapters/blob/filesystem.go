// Package blob grava arquivos binários (PDFs de boleto) no disco local
package blob

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/magnani/sicoob-payment/internal/ports"
)

// StorageError indica falha ao gravar um arquivo
type StorageError struct {
	Name string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("erro ao salvar arquivo %s: %v", e.Name, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Filesystem grava arquivos sob um diretório base e os expõe sob uma URL base
type Filesystem struct {
	dir     string
	baseURL string
}

var _ ports.BlobStore = (*Filesystem)(nil)

// NewFilesystem cria o armazenamento no diretório informado
func NewFilesystem(dir, baseURL string) *Filesystem {
	return &Filesystem{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Dir retorna o diretório base
func (f *Filesystem) Dir() string {
	return f.dir
}

// Save grava os bytes em name (relativo ao diretório base).
// Nomes que escapam do diretório base são rejeitados.
func (f *Filesystem) Save(ctx context.Context, data []byte, name string) (*ports.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StorageError{Name: name, Err: err}
	}

	clean := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	rel := strings.TrimPrefix(clean, "/")
	if rel == "" || rel == "." {
		return nil, &StorageError{Name: name, Err: fmt.Errorf("nome de arquivo inválido")}
	}

	full := filepath.Join(f.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, &StorageError{Name: name, Err: err}
	}

	// Grava em arquivo temporário e renomeia para não expor PDF pela metade
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return nil, &StorageError{Name: name, Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, &StorageError{Name: name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, &StorageError{Name: name, Err: err}
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return nil, &StorageError{Name: name, Err: err}
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return nil, &StorageError{Name: name, Err: err}
	}

	return &ports.StoredFile{
		Path: full,
		URL:  f.baseURL + "/" + rel,
		Size: int64(len(data)),
	}, nil
}
