// Package datafactory 生成被测 API 的测试数据。
package datafactory

import (
	"fmt"
	"time"

	"github.com/duke-git/lancet/v2/random"
)

// User 用户，administrador 是字符串 "true"/"false"
type User struct {
	Nome          string `json:"nome"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	Administrador string `json:"administrador"`
}

// IsAdmin 是否管理员
func (u User) IsAdmin() bool {
	return u.Administrador == "true"
}

// Product 商品
type Product struct {
	Nome       string `json:"nome"`
	Preco      int    `json:"preco"`
	Descricao  string `json:"descricao"`
	Quantidade int    `json:"quantidade"`
}

var (
	firstNames = []string{
		"Ana", "Bruno", "Carlos", "Diana", "Eduardo", "Fernanda", "Gabriel", "Helena",
		"Igor", "Joana", "Kevin", "Lucia", "Marcos", "Nicole", "Oscar", "Patricia",
	}
	lastNames = []string{
		"Silva", "Santos", "Oliveira", "Costa", "Pereira", "Carvalho", "Sousa", "Gomes",
		"Martins", "Alves", "Ferreira", "Barbosa", "Ribeiro", "Rocha", "Teixeira", "Vieira",
	}
	productNames = []string{
		"Notebook", "Mouse", "Teclado", "Monitor", "Webcam", "Headphone", "Mousepad",
		"Hub USB", "Cabo HDMI", "Adaptador", "Cooler", "SSD", "Memória RAM", "Processador",
	}
	descriptions = []string{
		"Produto de alta qualidade com excelente performance",
		"Ideal para profissionais e entusiastas de tecnologia",
		"Compatível com diversos sistemas operacionais",
		"Suporte técnico 24/7 disponível",
		"Garantia de 12 meses contra defeitos",
		"Certificado e testado em laboratório",
		"Eco-friendly e sustentável",
		"Melhor relação custo-benefício do mercado",
	}
)

// Price and quantity bounds, inclusive.
const (
	MinPrice    = 10
	MaxPrice    = 5000
	MinQuantity = 1
	MaxQuantity = 100
)

// Source 随机数来源
type Source interface {
	// IntBetween 返回 [min, max] 内的整数
	IntBetween(min, max int) int
	// String 返回长度为 n 的字母数字串
	String(n int) string
}

type lancetSource struct{}

func (lancetSource) IntBetween(min, max int) int { return random.RandInt(min, max+1) }
func (lancetSource) String(n int) string         { return random.RandString(n) }

// Factory 测试数据生成器，不可并发使用
type Factory struct {
	src Source
	now func() time.Time
}

// New 创建生成器，src 为 nil 时使用 lancet random
func New(src Source) *Factory {
	if src == nil {
		src = lancetSource{}
	}
	return &Factory{src: src, now: time.Now}
}

func (f *Factory) pick(values []string) string {
	return values[f.src.IntBetween(0, len(values)-1)]
}

// NewUser 生成一个用户，邮箱由时间戳和随机数组成
func (f *Factory) NewUser(admin bool) User {
	administrador := "false"
	if admin {
		administrador = "true"
	}
	return User{
		Nome:          f.pick(firstNames) + " " + f.pick(lastNames),
		Email:         fmt.Sprintf("user.%d%d@test.com", f.now().UnixMilli(), f.src.IntBetween(1000, 9999)),
		Password:      f.src.String(12),
		Administrador: administrador,
	}
}

// Users 生成 count 个用户，每个用户以 adminPercent% 的概率为管理员
func (f *Factory) Users(count, adminPercent int) []User {
	users := make([]User, 0, max(count, 0))
	for i := 0; i < count; i++ {
		users = append(users, f.NewUser(f.src.IntBetween(1, 100) <= adminPercent))
	}
	return users
}

// NewProduct 生成一个商品
func (f *Factory) NewProduct() Product {
	return Product{
		Nome:       f.pick(productNames) + " - " + f.src.String(5),
		Preco:      f.src.IntBetween(MinPrice, MaxPrice),
		Descricao:  f.pick(descriptions),
		Quantidade: f.src.IntBetween(MinQuantity, MaxQuantity),
	}
}

// Products 生成 count 个商品
func (f *Factory) Products(count int) []Product {
	products := make([]Product, 0, max(count, 0))
	for i := 0; i < count; i++ {
		products = append(products, f.NewProduct())
	}
	return products
}
