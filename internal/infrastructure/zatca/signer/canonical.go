package signer

import (
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

// Canonicalize devuelve la forma canónica C14N 1.1 del documento: sin declaración XML,
// sin espacios entre elementos, declaraciones de namespace solo donde entran en ámbito,
// atributos en orden canónico y vacíos expandidos. Aplicarla dos veces produce los mismos bytes.
func Canonicalize(doc []byte) ([]byte, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(doc); err != nil {
		return nil, fmt.Errorf("zatca: parsear XML: %w", err)
	}
	return canonicalizeTree(tree)
}

func canonicalizeTree(tree *etree.Document) ([]byte, error) {
	if tree.Root() == nil {
		return nil, fmt.Errorf("zatca: documento sin raíz")
	}
	var drop []etree.Token
	for _, t := range tree.Child {
		switch v := t.(type) {
		case *etree.ProcInst:
			if v.Target == "xml" {
				drop = append(drop, t)
			}
		case *etree.CharData:
			drop = append(drop, t)
		}
	}
	for _, t := range drop {
		tree.RemoveChild(t)
	}
	tree.Indent(etree.NoIndent)

	out, err := dsig.MakeC14N11Canonicalizer().Canonicalize(tree.Root())
	if err != nil {
		return nil, fmt.Errorf("zatca: c14n: %w", err)
	}
	return out, nil
}

// canonicalizeXML canonicaliza un fragmento autónomo (SignedInfo, SignedProperties)
// que ya declara sus namespaces en la raíz.
func canonicalizeXML(data []byte) ([]byte, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("zatca: parsear XML: %w", err)
	}
	return canonicalizeTree(tree)
}
