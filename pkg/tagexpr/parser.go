package tagexpr

// parser is a recursive descent parser for tag expressions.
// Each call to Parse uses its own parser.
type parser struct {
	input string
	lex   *Lexer
	tok   Token // current token
	depth int   // open parentheses consumed so far
}

// Parse parses a tag expression. Empty input yields a *True expression.
// Malformed input returns a *SyntaxError.
//
// Grammar, loosest binding first:
//
//	expression = term { "or" term } ;
//	term       = factor { "and" factor } ;
//	factor     = "not" factor | "(" expression ")" | identifier ;
func Parse(input string) (Expr, error) {
	p := &parser{input: input, lex: NewLexer(input)}
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.Type == TokenEnd {
		return &True{}, nil
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	// Tokens after a complete expression are discarded, provided the
	// parentheses still balance.
	for p.tok.Type != TokenEnd {
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if p.depth != 0 {
		return nil, p.errorAt(UnmatchedOpenParen, p.tok.Pos)
	}
	return expr, nil
}

// MustParse is like Parse but panics if the expression cannot be parsed.
func MustParse(input string) Expr {
	expr, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return expr
}

// next advances to the next token and tracks parenthesis depth.
func (p *parser) next() error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = tok
	switch tok.Type {
	case TokenLParen:
		p.depth++
	case TokenRParen:
		p.depth--
		if p.depth < 0 {
			return p.errorAt(UnmatchedCloseParen, tok.Pos)
		}
	}
	return nil
}

// expectOperator fails unless the current token may follow a complete operand.
func (p *parser) expectOperator(allowed ...TokenType) error {
	for _, t := range allowed {
		if p.tok.Type == t {
			return nil
		}
	}
	return p.errorAt(ExpectedOperator, p.tok.Pos)
}

func (p *parser) parseExpression() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if err := p.expectOperator(TokenOr, TokenRParen, TokenEnd); err != nil {
		return nil, err
	}

	for p.tok.Type == TokenOr {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	if err := p.expectOperator(TokenAnd, TokenOr, TokenRParen, TokenEnd); err != nil {
		return nil, err
	}

	for p.tok.Type == TokenAnd {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseFactor() (Expr, error) {
	tok := p.tok

	switch tok.Type {
	case TokenNot:
		if err := p.next(); err != nil {
			return nil, err
		}
		if !p.tok.Type.isOperand() {
			return nil, p.errorAt(ExpectedOperand, p.tok.Pos)
		}
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &Not{Operand: operand}, nil
	case TokenLParen:
		if err := p.next(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.tok.Type != TokenRParen {
			return nil, p.errorAt(UnmatchedOpenParen, tok.Pos)
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		return expr, nil
	case TokenIdent:
		if err := p.next(); err != nil {
			return nil, err
		}
		return &Literal{Name: tok.Value}, nil
	default:
		return nil, p.errorAt(ExpectedOperand, tok.Pos)
	}
}
